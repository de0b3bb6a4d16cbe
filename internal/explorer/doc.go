// Package explorer defines the page-exploration contract consumed by the
// crawler core, and ships a basic HTTP implementation.
//
// The crawler never inspects HTML itself; it hands a category URL to an
// Explorer and receives either a list of child-category candidates or a
// typed failure. The failure kind drives the retry state machine:
//
//   - KindTransient: network blips, timeouts, 5xx. Retried with
//     exponential backoff.
//   - KindChallenge: anti-bot gating (CAPTCHA, bot-verification pages).
//     Retried with a long fixed delay that does not count as an attempt.
//   - KindPermanent: 404, malformed pages. Never retried.
//
// HTTPExplorer is a deliberately simple default: it fetches the page and
// lists same-page anchors matching the retailer's category URL patterns.
// Production deployments with selector inference or browser automation
// implement Explorer themselves and inject it into the crawler.
package explorer
