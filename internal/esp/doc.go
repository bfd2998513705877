// Package esp holds the email service provider senders used to deliver invite
// emails. Every sender implements sending.Sender, makes exactly one provider
// call per Send, and never retries.
package esp
