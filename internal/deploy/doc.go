// Package deploy talks to a CRX package manager over HTTP.
//
// A Session holds the target host, the credentials and an optional retry
// budget. It uploads package archives, installs them and asks the Sling JSP
// console to recompile scripts. Each call sends one POST through a Transport,
// classifies the response body and re-sends the request only when the
// transport reports a timeout, at most as many times as the retry budget allows.
//
// A Session is not safe for concurrent use.
package deploy
