package loadbalance

import "testing"

func TestSafeCurrent(t *testing.T) {
	b := Balancer{FuseA: 20, ChargerMaxA: 16}
	cases := []struct {
		name      string
		household [3]float64
		charger   [3]float64
		want      float64
	}{
		{"idle house", [3]float64{2, 3, 1}, [3]float64{}, 16},
		{"heavy phase", [3]float64{12, 3, 1}, [3]float64{}, 8},
		{"charger draw excluded", [3]float64{18, 17, 16}, [3]float64{10, 10, 10}, 12},
		{"overloaded", [3]float64{25, 3, 1}, [3]float64{}, 0},
		{"meter below charger", [3]float64{1, 1, 1}, [3]float64{10, 10, 10}, 16},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := b.SafeCurrent(tc.household, tc.charger); got != tc.want {
				t.Fatalf("expected %v got %v", tc.want, got)
			}
		})
	}
}

func TestSafeCurrentWithoutChargerCap(t *testing.T) {
	b := Balancer{FuseA: 25}
	if got := b.SafeCurrent([3]float64{5, 0, 0}, [3]float64{}); got != 20 {
		t.Fatalf("expected 20 got %v", got)
	}
}

func TestFeasible(t *testing.T) {
	if Feasible(5.9) {
		t.Fatalf("5.9A must be infeasible")
	}
	if !Feasible(6) {
		t.Fatalf("6A must be feasible")
	}
}
