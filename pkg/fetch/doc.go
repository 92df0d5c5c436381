// Package fetch translates single HTTP calls into a uniform result envelope.
//
// Every call yields either a payload or an error value. A 2xx response fills
// the payload with the decoded JSON body; anything else fills the error. When
// the body is empty the status code and reason phrase are substituted as a
// StatusDescriptor. Network failures and malformed JSON are returned as Go
// errors instead.
package fetch
