// Package app provides the application composition layer for the custody
// service.
//
// # Architecture Role
//
// The app package composes the custody services into a running application.
// It is NOT a business logic layer - business logic belongs in the service
// packages under internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Main application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── wallet/         # Wallet record and backup state
//	│   ├── secret/         # Encrypted secret envelopes
//	│   ├── passcode/       # Device passcode credentials
//	│   └── audit/          # Access log entries
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (WalletStore, SecretStore, ...)
//	│   ├── memory/         # In-memory implementation for testing
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic
//	│   ├── vault/          # Envelope encryption of wallet secrets
//	│   ├── passcode/       # Device passcode gate
//	│   ├── backup/         # Backup state machine and quiz
//	│   ├── audit/          # Append-only access auditor
//	│   ├── custody/        # Workflow orchestrator
//	│   └── reminder/       # Scheduled backup reminder sweep
//	├── httpapi/            # HTTP API handlers and routing
//	├── system/             # Lifecycle management
//	└── metrics/            # Application metrics
//
// # Dependency Direction
//
//	cmd/custodyd/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► internal/app/services/ (business logic)
//	      │           │
//	      │           └──► internal/app/storage/ (persistence interfaces)
//	      │
//	      └──► internal/platform/ (drivers, migrations)
//
// When adding a new domain: create its models under domain/, extend
// storage/interfaces.go with both implementations, build the service under
// services/, wire it in application.go, and expose it in httpapi/.
package app
