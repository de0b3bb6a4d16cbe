// Package report renders discovery run results in multiple formats.
//
// Three writers share one interface: SimpleWriter for terminal output,
// MarkdownWriter for documentation and sharing, and JSONWriter for tool
// integration. MultiWriter fans a report out to several destinations,
// typically terminal plus file.
package report
