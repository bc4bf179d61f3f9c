package payroll

// ComputeNet applies the monthly pay formula: basic plus allowances minus
// deductions, floored at zero so misconfigured deductions cannot produce a
// negative payout.
func ComputeNet(basic, allowances, deductions float64) float64 {
	net := basic + allowances - deductions
	if net < 0 {
		return 0
	}
	return net
}
