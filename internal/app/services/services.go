package services

// Services defined in this package:
// - AuthService: registration and login, token issuance
// - StudentService: profiles and eligible-partner discovery
// - SwapService: swap request lifecycle and the batch exchange
// - ChatService: negotiation channel history, delivery and sessions
