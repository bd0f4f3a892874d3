// Package ledger is the portfolio accounting engine: it applies buy, sell,
// dividend and split transactions to a portfolio's cash balance, holdings and
// FIFO tax lots, records realized gains per consumed lot, and reverses those
// effects when a past transaction is amended or removed.
//
// Everything here is pure. Operations take a State and return a new State;
// persistence diffs the two with Diff and writes the result in one database
// transaction.
package ledger
