// Package abm is a client for the private GraphQL API behind the Apple
// Business Manager console.
//
// Every operation funnels through Client.Invoke, which attaches the current
// session id and cookies, and handles "Unauthorized" answers by renewing the
// session a bounded number of times per process. Typed helpers build the
// request bodies the console frontend sends; parsers pull the few fields the
// assignment flow needs out of the responses.
package abm
