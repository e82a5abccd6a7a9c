// Package model defines the run report shared by the purgers, the report
// writers and the history database.
//
// This package contains the following main types:
//   - Report: Everything one purge or spider run did
//   - PurgeResult: The outcome of one purge request
//   - Summary: Counts derived from a Report for quick review
//
// The types are serializable to JSON; the history database stores reports
// in that form.
package model
