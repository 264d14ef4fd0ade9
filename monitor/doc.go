// Package monitor keeps one session alive and ends it when it can no
// longer be trusted.
//
// While Active, the Monitor polls a SessionSource. An inactive user is
// logged out with a notification; a token within the refresh buffer of
// its expiry is refreshed through the Controller, and a failed refresh
// ends the session silently. A separate keep-alive loop refreshes on a
// fixed cadence shorter than the token lifetime.
//
//	Idle --Start--> Active --near expiry--> Refreshing --ok--> Active
//	                  |                         |
//	                  +--inactive/missing--+    +--failed--+
//	                                       v               v
//	                                  Terminating ----> Idle
package monitor
