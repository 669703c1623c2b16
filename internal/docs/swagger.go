package docs

// @title Tern API
// @version 1.0
// @description API server for the Tern email campaign platform. Provides endpoints for campaign delivery, SMTP pool management, contact imports, engagement tracking, and deliverability checks.
// @termsOfService https://tern.sh/terms

// @contact.name Tern API Support
// @contact.url https://tern.sh/support
// @contact.email api-support@tern.sh

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host api.tern.sh
// @BasePath /api/v1
// @schemes https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter the token with the `Bearer: ` prefix, e.g. "Bearer abcde12345".

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for programmatic access

// @tag.name auth
// @tag.description User authentication and team membership endpoints

// @tag.name campaigns
// @tag.description Campaign creation, scheduling and lifecycle control

// @tag.name analytics
// @tag.description Engagement rollups, timelines and exports

// @tag.name contacts
// @tag.description Contact management, imports and mailing list operations

// @tag.name smtp
// @tag.description SMTP account pool, rotation and breaker control

// @tag.name tracking
// @tag.description Public open, click and unsubscribe beacons

// @tag.name deliverability
// @tag.description Domain record checks and email address validation

// @tag.name webhooks
// @tag.description Webhook subscriptions for delivery events

// @tag.name files
// @tag.description File upload and management for imports

// @tag.name alerts
// @tag.description Operator alerts raised by the delivery pipeline

// @tag.name plan
// @tag.description Plan limits and usage
