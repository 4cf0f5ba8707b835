package application

import "errors"

var (
	errNilPayments     = errors.New("reconciliation: nil payment repository")
	errNilExpenses     = errors.New("reconciliation: nil expense repository")
	errNilTransactions = errors.New("reconciliation: nil transaction repository")
)
