// Package activity records when the user last interacted with the portal.
//
// The embedding shell forwards interaction signals to Tracker.Observe;
// the tracker throttles them and writes the time through its Recorder.
// The session monitor reads that time back to enforce the inactivity
// timeout.
package activity
