// Package affiliate implements the affiliate program: partners, the clicks
// their short links bring in, the orders those clicks turn into, and the
// commission paid out for them.
//
// Commission moves through three buckets on the affiliate row. An order is
// recorded as pending with its commission snapshotted from the affiliate's
// rate at checkout. Confirming the order (fulfilment) credits the commission
// to total and pending; refunding a confirmed order takes it back out of
// pending. A payout moves money from pending to paid.
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports
// net/http or database/sql directly.
package affiliate
