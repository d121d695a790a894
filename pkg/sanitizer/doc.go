// Package sanitizer normalizes user-supplied free text before it is stored:
// cancellation reasons and feedback comments arrive straight from client
// input and end up in coach-facing views.
package sanitizer
