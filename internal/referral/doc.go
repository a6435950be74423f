// Package referral keeps a shopper's referral code alive between landing on
// the storefront and checking out.
//
// A Tracker reads the code from the landing URL, keeps it in a 30-day cookie,
// and writes it onto the cart as a cart attribute so order webhooks can
// attribute the purchase. Every storefront request that adds an item to the
// cart is followed by another cart attribute write, through an interceptor
// installed with Tracker.Register.
//
// The Tracker never reports failures to its caller. Cart writes are logged
// and dropped; nothing in here may interrupt browsing or checkout.
package referral
