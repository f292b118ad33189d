// Package mp coordinates multiprocessor bring-up and dispatch.
//
// A single primary unit enumerates the secondary units released by the
// platform, orders them canonically by hardware identity, and then runs
// run-to-completion procedures on one or all of them, synchronously or
// asynchronously, bounded by a timeout. Every secondary unit runs one
// persistent idle loop: wait for its wake slot, execute the assigned
// procedure, report Finished, and go back to waiting.
//
// There is no scheduler in the modeled environment. Every wait is a bounded
// poll loop; asynchronous completion is advanced by the primary calling Poll.
//
// All dispatch and administrative operations must be called by the primary
// unit. WhoAmI, GetProcessorCount and GetUnitInfo may be called by any unit.
package mp
