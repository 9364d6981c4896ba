// Package commands defines the docprep CLI and wires dependencies for subcommands.
//
// Commands
//
//   - prepare       Drive a document through preparation from a YAML plan
//   - status        Show a document and the step its workflow opens on
//   - create        Start a draft, optionally uploading a PDF
//   - set-password  Set the access password of a document
//   - search        Search documents
//   - history       List the recorded changes of a document
//   - data-url      Print a short-lived download link for the document PDF
//
// # Implementation
//
// The root command loads settings (config file, DOCPREP_* env vars, then
// persistent flags) and builds the API client and logger before any
// subcommand runs.
package commands
