// Package attribution turns Shopify order webhooks into referral orders.
//
// An order is attributed by the first referral code found in, in order:
// the cart attributes the storefront tracker wrote, a discount code that is
// also an affiliate's ref code, a "ref:<code>" token in the order note, and
// the ref parameter of the order's landing URL. Later webhooks for the same
// order move it through fulfilment, cancellation and refund.
package attribution
