package quantity

import "testing"

func TestEvaluate(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"12 * 0.5", 6},
		{"12*0.5", 6},
		{"10 / 3", 3.33},
		{"0.1 * 0.1", 0.01},
		{"7 / 2", 3.5},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.expr)
		if err != nil {
			t.Fatalf("%q: %v", tc.expr, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %v want %v", tc.expr, got, tc.want)
		}
	}
}

func TestEvaluateRejectsMalformed(t *testing.T) {
	for _, expr := range []string{"", "12", "12 + 3", "a * b", "1 * 2 * 3", "5 / 0"} {
		if _, err := Evaluate(expr); err == nil {
			t.Fatalf("%q: expected an error", expr)
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid(" 3 * 4 ") {
		t.Fatal("padded expression must validate")
	}
	if Valid("3 + 4") {
		t.Fatal("addition is not supported")
	}
}
