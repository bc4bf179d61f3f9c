package payroll

import "testing"

func TestComputeNet(t *testing.T) {
	tests := []struct {
		name       string
		basic      float64
		allowances float64
		deductions float64
		want       float64
	}{
		{name: "basic only", basic: 3000, want: 3000},
		{name: "allowances added", basic: 3000, allowances: 500, want: 3500},
		{name: "deductions subtracted", basic: 3000, allowances: 500, deductions: 700, want: 2800},
		{name: "deductions exceed pay floors at zero", basic: 1000, deductions: 1500, want: 0},
		{name: "zero everything", want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeNet(tc.basic, tc.allowances, tc.deductions)
			if got != tc.want {
				t.Fatalf("ComputeNet(%v, %v, %v) = %v, want %v", tc.basic, tc.allowances, tc.deductions, got, tc.want)
			}
		})
	}
}
