// Package accounts implements the account lifecycle of a JSON API backend:
// registration, email/SMS verification, password recovery and JWT based
// login/logout.
//
// Lifecycle:
//   - Accounts are created unconfirmed. Registration issues exactly one
//     verification artifact for the chosen Channel: a 6 digit verification
//     code for SMS or a long opaque confirmation code for email.
//   - Verify consumes the artifact, clears it and marks the account as
//     confirmed. Codes are single use; a second attempt is a not found error.
//   - Login only issues tokens for confirmed accounts. Logout adds the token
//     id to a RevocationStore until the token expires.
//
// Collaborators:
//   - Lifecycle composes a RepositoryManager (user directory), a
//     NotificationDispatcher, a CredentialHasher, an InputValidator, a
//     TokenAuthority and a PasswordBroker. All of them are injected so they can
//     be replaced in tests; see the notify package for the mail and SMS
//     implementations.
package accounts
