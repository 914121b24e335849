// Package storepay is a multi-tenant storefront payment service. Tenants sell
// products, shoppers pay through a hosted provider checkout, and provider
// callbacks settle the resulting orders.
//
// # Overview
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│   Storefront    │───►│    storepay     │───►│    Provider     │
//	│  (tenant app)   │    │  /v1 API        │    │    checkout     │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//	                               ▲                      │
//	                               └──── callback ────────┘
//
// # Supported Providers
//
//   - Robokassa: MD5 signed checkout links and ResultURL callbacks
//   - CoinPayments: create_transaction API and HMAC-SHA512 signed IPN callbacks
//
// # Flow
//
//  1. An admin registers, logs in and receives a JWT bound to the tenant.
//  2. The tenant creates products and stores provider credentials under /v1/payment/configs.
//  3. POST /v1/payment/create_payment creates a pending order and returns the checkout URL.
//  4. The provider calls /payment/robokassa_callback/ or /payment/coinpayments_callback/.
//  5. A verified callback moves the order to paid or failed exactly once; redeliveries are no-ops.
//  6. The first transition to paid publishes an order paid event.
//
// # Packages
//
//   - provider: the adapter contract plus the robokassa and coinpayments adapters
//   - catalog: tenants and products
//   - ledger: orders and their settlement state machine
//   - payment: intent creation and callback reconciliation
//   - handler, router: the HTTP surface
//   - infra: configuration, storage, auth, logging, metrics, messaging, audit
//
// # Configuration
//
// All settings come from the environment (an optional .env file is loaded first):
//
//	APP_PORT, DB_DRIVER, DB_DSN, JWT_SECRET, JWT_TTL
//	PROVIDER_TIMEOUT, CALLBACK_CONCURRENCY, RATE_LIMIT_PER_MINUTE
//	ROBOKASSA_TEST_MODE, COINPAYMENTS_API_URL, COINPAYMENTS_IPN_URL
//	ORDER_SWEEP_INTERVAL, ORDER_SWEEP_AGE, ORDER_SWEEP_POLICY
//	RABBITMQ_URL, RABBITMQ_EXCHANGE
//	ENABLE_OPENSEARCH_LOGGING, OPENSEARCH_URL, OPENSEARCH_USER, OPENSEARCH_PASSWORD, LOGGING_LEVEL
package storepay
