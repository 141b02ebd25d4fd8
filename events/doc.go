// Package events classifies decoded webhook payloads and reduces them to
// the fields the relay is allowed to forward.
//
// Chat user identifiers are replaced with pseudonyms from Pseudonymizer;
// progress events keep a fixed field set with defaults for the optional
// ones. Payloads of an unknown kind pass through untouched.
package events
