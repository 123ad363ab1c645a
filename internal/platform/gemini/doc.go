// Package gemini analyzes video files with Google's Gemini API.
//
// The Analyzer uploads a video through the Gemini Files API, waits for the
// upload to become ACTIVE, asks the model for a structured description of
// the video and parses the answer into an Analysis. Uploaded files are
// deleted once the analysis is done, whatever the outcome.
//
// Model calls are retried with exponential backoff and jitter. Safety
// blocks and malformed responses are permanent and returned immediately.
package gemini
