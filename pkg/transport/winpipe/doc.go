// Package winpipe implements the named-pipe worker link. It is only
// available on Windows; other platforms get transports.ErrUnsupported.
package winpipe
