// Package raiser implements the alert-raise flow: it pushes a new emergency
// alert to the server, retrying until the raise is confirmed, and prints the
// assigned alert id.
package raiser
