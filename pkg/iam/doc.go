// Package iam (Identity and Access Management) provides the multi-tenant
// access-control core: cookie-borne identity sessions, single-use secret
// tokens, storage-fresh authorization, and plan-based feature gating.
//
// # Overview
//
// The iam package is organized into several sub-packages that work together:
//
//   - iam/session  — signed identity sessions carried by an http-only cookie
//   - iam/member   — tenant membership entity (role, status) and repository
//   - iam/authz    — authorization gate resolving the actor fresh from storage
//   - iam/onetime  — single-use tokens (password reset, invites)
//   - iam/plan     — subscription plan canonicalization and feature policy
//
// # Architecture
//
// The package follows a layered, domain-driven architecture:
//
//	HTTP Handler  →  Service Layer  →  Repository Interface  →  Infrastructure (Postgres)
//
// Each sub-domain exposes its own error registry (e.g., "SESSION", "ONETIME",
// "AUTHZ"), domain entities with rich methods, and repository interfaces.
//
// # Session vs Authorization
//
// A session proves only identity (tenant + email). It never carries role,
// status, or plan: those are re-read from storage on every authorization
// check, so a demoted or deactivated member loses privileges immediately
// rather than when the cookie expires.
//
// # Multi-Tenancy
//
// Every user belongs to a tenant. Membership carries a role (owner | member)
// and a status (active | pending | suspended). A tenant has exactly one
// subscription plan, canonicalized by iam/plan into a fixed tier enumeration
// that gates feature availability.
package iam
