// Package core provides the business logic for importing survey answers.
//
// The package knows nothing about HTTP or HTML. It is used by the web server,
// the command line importer and tests alike; the survey platform is reached
// through the [Gateway] interface.
//
// # Pipeline
//
// An uploaded file goes through these stages:
//
//  1. [ParseTabular] turns a .csv or .xlsx file into headers and [RawRow]s
//  2. [ValidateCSV] checks the NPS header, then every row's NPS and Date
//  3. [BuildAnswerPayload] maps each row onto the platform's answer format
//  4. [GetAdditionalAnswers] extracts the [Qn] columns for follow-up questions
//
// Zero-width characters and byte order marks are stripped from every header
// and value with [StripInvisible] before they are interpreted.
//
// # Runs
//
// [Service.StartImport] creates a run. A file that validates cleanly is
// submitted right away; otherwise the run waits in PhaseValidationFailed until
// [Service.ProceedAnyway] resubmits it with invalid rows skipped, or
// [Service.Reset] discards it. A missing NPS column cannot be overridden.
//
// Rows are submitted strictly one after another by a [Processor]. A row that
// the platform rejects is recorded and the run continues; only a run in which
// every row was rejected ends in PhaseError. Observers follow a run through
// [Service.Subscribe], which delivers immutable [Status] snapshots.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]. Codes
// are grouped as FILE (uploaded file), IMP (run state), API (survey platform),
// RATE and ERR000 (unknown).
package core
