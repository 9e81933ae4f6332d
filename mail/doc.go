// Package mail delivers account-lifecycle email: verification links and
// password-reset links.
//
// The Engine depends only on the [Sender] interface. [SMTPSender] is the
// production implementation; tests substitute an in-memory sender.
package mail
