// Package holdings tracks the positions of an investor as discrete purchase
// lots and values them in a single base currency.
//
// The core functionalities include:
//   - Lot Store: the ordered purchase lots of each Position, kept in the
//     currency they were bought in.
//   - Position Aggregator: shares, cost basis, weighted-average cost and first
//     purchase date, recomputed from the lots on every read (Position.Aggregate).
//   - Ledger: Buy, Sell, Modify, Deposit and Withdraw transactions applied
//     atomically with Portfolio.Apply. Sells consume lots FIFO unless another
//     MatchingRule is chosen.
//   - Currency Converter: Convert over a caller supplied Rates table, using a
//     direct or inverse rate and never a cross rate.
//   - Valuation Engine: Valuate combines a Portfolio with a Market of quotes and
//     rates. It fails as a whole with an IncompleteMarketDataError rather than
//     returning a partial valuation.
//   - History: immutable Snapshots of valuations, queried by time range.
//
// Market data is never fetched here: quotes and rates are plain inputs. The
// Manager serializes changes per owner and persists them through a Store.
//
// This package serves as the foundational logic for the `hld` command-line tool.
package holdings
