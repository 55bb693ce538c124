// Package models defines the core domain models for group exchanges.
//
// # Models
//
//   - Exchange: a pledge of hours among several providers and receivers,
//     driven through its lifecycle by the organizer and the participants
//   - Participant: one user's membership in an exchange (role, declared
//     values, confirmation state)
//   - Allocation: a derived (provider, receiver, amount) obligation; only
//     persisted as ledger transactions at settlement
//   - LedgerBatch / LedgerEntry / LedgerTransaction: the unit of work handed
//     to the ledger collaborator when an exchange settles
//   - HistoryEntry: audit record of every mutating command
//   - User: registered account, also used for identity lookups
//
// # Design Principles
//
//  1. Hours are decimals (github.com/shopspring/decimal), never floats
//  2. Relationships are ID strings, not pointers
//  3. Models carry no persistence or transport concerns
package models
