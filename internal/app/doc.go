// Package app composes the marketplace backend: domain services over the
// storage interfaces, plus the background services managed by
// internal/app/system.
//
//	internal/app/
//	├── application.go   # wiring and lifecycle
//	├── domain/          # data types (users, posts, offerings, bookings, ...)
//	├── storage/         # store interfaces, memory and postgres implementations
//	├── services/        # one package per domain service
//	├── httpapi/         # gorilla/mux routes and handlers
//	├── runtime/         # config driven process assembly used by cmd/appserver
//	├── metrics/         # prometheus collectors
//	└── system/          # start/stop manager for background services
//
// Business rules live in services; httpapi only decodes requests, calls one
// service method and maps errors to status codes.
package app
