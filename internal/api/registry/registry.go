package registry

import (
	"github.com/labstack/echo/v4"

	"tern/internal/api/controllers"
	"tern/internal/api/middleware"
	"tern/internal/models"
	"tern/internal/services"

	"gorm.io/gorm"
)

// 📝 RegisterCRUDRoutes registers CRUD routes for all models
// @Summary Register CRUD routes for all models
// @Description Register CRUD routes for all models
// @Accept json
// @Produce json
func RegisterCRUDRoutes(g *echo.Group, db *gorm.DB) {
	// Mailing Lists
	mailingListService := services.NewBaseService(db, models.MailingList{})
	mailingListController := controllers.NewBaseController(mailingListService).TeamScoped()
	listGroup := g.Group("/mailing-lists")
	listGroup.Use(middleware.RequirePermissions(db, "lists:read"))
	// @Summary List mailing lists
	// @Description Get a list of all mailing lists
	// @Accept json
	// @Produce json
	// @Success 200 {array} models.MailingList
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/mailing-lists [get]
	listGroup.GET("", mailingListController.List)
	// @Summary Get mailing list
	// @Description Get a mailing list by ID
	// @Accept json
	// @Produce json
	// @Param id path string true "List ID"
	// @Success 200 {object} models.MailingList
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 404 {object} map[string]string "Not found"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/mailing-lists/{id} [get]
	listGroup.GET("/:id", mailingListController.Get)

	// Protected mailing list routes
	listWriteGroup := listGroup.Group("")
	listWriteGroup.Use(middleware.RequirePermissions(db, "lists:write"))
	// @Summary Create mailing list
	// @Description Create a new mailing list
	// @Accept json
	// @Produce json
	// @Param list body models.MailingList true "List object"
	// @Success 201 {object} models.MailingList
	// @Failure 400 {object} map[string]string "Bad request"
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/mailing-lists [post]
	listWriteGroup.POST("", mailingListController.Create)
	// @Summary Update mailing list
	// @Description Update an existing mailing list
	// @Accept json
	// @Produce json
	// @Param id path string true "List ID"
	// @Param list body models.MailingList true "List object"
	// @Success 200 {object} models.MailingList
	// @Failure 400 {object} map[string]string "Bad request"
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 404 {object} map[string]string "Not found"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/mailing-lists/{id} [put]
	listWriteGroup.PUT("/:id", mailingListController.Update)
	// @Summary Delete mailing list
	// @Description Delete a mailing list
	// @Accept json
	// @Produce json
	// @Param id path string true "List ID"
	// @Success 204 "No content"
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 404 {object} map[string]string "Not found"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/mailing-lists/{id} [delete]
	listWriteGroup.DELETE("/:id", mailingListController.Delete)

	// Contacts
	contactService := services.NewBaseService(db, models.Contact{})
	contactController := controllers.NewBaseController(contactService).TeamScoped()
	contactGroup := g.Group("/contacts")
	contactGroup.Use(middleware.RequirePermissions(db, "contacts:read"))
	// @Summary List contacts
	// @Description Get a list of all contacts
	// @Accept json
	// @Produce json
	// @Success 200 {array} models.Contact
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/contacts [get]
	contactGroup.GET("", contactController.List)
	// @Summary Get contact
	// @Description Get a contact by ID
	// @Accept json
	// @Produce json
	// @Param id path string true "Contact ID"
	// @Success 200 {object} models.Contact
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 404 {object} map[string]string "Not found"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/contacts/{id} [get]
	contactGroup.GET("/:id", contactController.Get)

	// Protected contact routes
	contactWriteGroup := contactGroup.Group("")
	contactWriteGroup.Use(middleware.RequirePermissions(db, "contacts:write"))
	// @Summary Create contact
	// @Description Create a new contact
	// @Accept json
	// @Produce json
	// @Param contact body models.Contact true "Contact object"
	// @Success 201 {object} models.Contact
	// @Failure 400 {object} map[string]string "Bad request"
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/contacts [post]
	contactWriteGroup.POST("", contactController.Create)
	// @Summary Update contact
	// @Description Update an existing contact
	// @Accept json
	// @Produce json
	// @Param id path string true "Contact ID"
	// @Param contact body models.Contact true "Contact object"
	// @Success 200 {object} models.Contact
	// @Failure 400 {object} map[string]string "Bad request"
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 404 {object} map[string]string "Not found"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/contacts/{id} [put]
	contactWriteGroup.PUT("/:id", contactController.Update)
	// @Summary Delete contact
	// @Description Delete a contact
	// @Accept json
	// @Produce json
	// @Param id path string true "Contact ID"
	// @Success 204 "No content"
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 404 {object} map[string]string "Not found"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/contacts/{id} [delete]
	contactWriteGroup.DELETE("/:id", contactController.Delete)

	// SMTP Accounts. Creation goes through the SMTP handler so plan limits
	// and credential encryption apply; the registry covers the rest.
	smtpAccountService := services.NewBaseService(db, models.SMTPAccount{})
	smtpAccountController := controllers.NewBaseController(smtpAccountService).TeamScoped()
	smtpGroup := g.Group("/smtp-accounts")
	smtpGroup.Use(middleware.RequirePermissions(db, "smtp_accounts:read"))
	// @Summary List SMTP accounts
	// @Description Get a list of all SMTP accounts
	// @Accept json
	// @Produce json
	// @Success 200 {array} models.SMTPAccount
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/smtp-accounts [get]
	smtpGroup.GET("", smtpAccountController.List)
	// @Summary Get SMTP account
	// @Description Get an SMTP account by ID
	// @Accept json
	// @Produce json
	// @Param id path string true "Account ID"
	// @Success 200 {object} models.SMTPAccount
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 404 {object} map[string]string "Not found"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/smtp-accounts/{id} [get]
	smtpGroup.GET("/:id", smtpAccountController.Get)

	// Protected SMTP account routes
	smtpWriteGroup := smtpGroup.Group("")
	smtpWriteGroup.Use(middleware.RequirePermissions(db, "smtp_accounts:write"))
	// @Summary Update SMTP account
	// @Description Update an existing SMTP account
	// @Accept json
	// @Produce json
	// @Param id path string true "Account ID"
	// @Param account body models.SMTPAccount true "Account object"
	// @Success 200 {object} models.SMTPAccount
	// @Failure 400 {object} map[string]string "Bad request"
	// @Failure 404 {object} map[string]string "Not found"
	// @Router /api/v1/smtp-accounts/{id} [put]
	smtpWriteGroup.PUT("/:id", smtpAccountController.Update)
	// @Summary Delete SMTP account
	// @Description Delete an SMTP account
	// @Accept json
	// @Produce json
	// @Param id path string true "Account ID"
	// @Success 204 "No content"
	// @Router /api/v1/smtp-accounts/{id} [delete]
	smtpWriteGroup.DELETE("/:id", smtpAccountController.Delete)

	// Campaigns
	campaignService := services.NewBaseService(db, models.Campaign{})
	campaignController := controllers.NewBaseController(campaignService).TeamScoped()
	campaignGroup := g.Group("/campaigns")
	campaignGroup.Use(middleware.RequirePermissions(db, "campaigns:read"))
	// @Summary List campaigns
	// @Description Get a list of all campaigns
	// @Accept json
	// @Produce json
	// @Success 200 {array} models.Campaign
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/campaigns [get]
	campaignGroup.GET("", campaignController.List)
	// @Summary Get campaign
	// @Description Get a campaign by ID
	// @Accept json
	// @Produce json
	// @Param id path string true "Campaign ID"
	// @Success 200 {object} models.Campaign
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 404 {object} map[string]string "Not found"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/campaigns/{id} [get]
	campaignGroup.GET("/:id", campaignController.Get)

	// Protected campaign routes
	campaignWriteGroup := campaignGroup.Group("")
	campaignWriteGroup.Use(middleware.RequirePermissions(db, "campaigns:write"))
	// @Summary Create campaign
	// @Description Create a new campaign in DRAFT
	// @Accept json
	// @Produce json
	// @Param campaign body models.Campaign true "Campaign object"
	// @Success 201 {object} models.Campaign
	// @Failure 400 {object} map[string]string "Bad request"
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/campaigns [post]
	campaignWriteGroup.POST("", campaignController.Create)
	// @Summary Update campaign
	// @Description Update an existing campaign
	// @Accept json
	// @Produce json
	// @Param id path string true "Campaign ID"
	// @Param campaign body models.Campaign true "Campaign object"
	// @Success 200 {object} models.Campaign
	// @Failure 400 {object} map[string]string "Bad request"
	// @Failure 404 {object} map[string]string "Not found"
	campaignWriteGroup.PUT("/:id", campaignController.Update)
	// @Summary Delete campaign
	// @Description Delete a campaign
	// @Accept json
	// @Produce json
	// @Param id path string true "Campaign ID"
	// @Success 204 "No content"
	// @Router /api/v1/campaigns/{id} [delete]
	campaignWriteGroup.DELETE("/:id", campaignController.Delete)

	// Webhooks
	webhookService := services.NewBaseService(db, models.Webhook{})
	webhookController := controllers.NewBaseController(webhookService).TeamScoped()
	webhookGroup := g.Group("/webhooks")
	webhookGroup.Use(middleware.RequirePermissions(db, "webhooks:read"))
	// @Summary List webhooks
	// @Description Get a list of all webhooks
	// @Accept json
	// @Produce json
	// @Success 200 {array} models.Webhook
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Failure 403 {object} map[string]string "Forbidden"
	// @Failure 500 {object} map[string]string "Internal server error"
	// @Router /api/v1/webhooks [get]
	webhookGroup.GET("", webhookController.List)
	// @Summary Get webhook
	// @Description Get a webhook by ID
	// @Accept json
	// @Produce json
	// @Param id path string true "Webhook ID"
	// @Success 200 {object} models.Webhook
	// @Failure 404 {object} map[string]string "Not found"
	// @Router /api/v1/webhooks/{id} [get]
	webhookGroup.GET("/:id", webhookController.Get)

	// Protected webhook routes
	webhookWriteGroup := webhookGroup.Group("")
	webhookWriteGroup.Use(middleware.RequirePermissions(db, "webhooks:write"))
	// @Summary Create webhook
	// @Description Create a new webhook
	// @Accept json
	// @Produce json
	// @Param webhook body models.Webhook true "Webhook object"
	// @Success 201 {object} models.Webhook
	// @Failure 400 {object} map[string]string "Bad request"
	// @Router /api/v1/webhooks [post]
	webhookWriteGroup.POST("", webhookController.Create)
	// @Summary Update webhook
	// @Description Update an existing webhook
	// @Accept json
	webhookWriteGroup.PUT("/:id", webhookController.Update)
	// @Summary Delete webhook
	// @Description Delete a webhook
	// @Accept json
	webhookWriteGroup.DELETE("/:id", webhookController.Delete)

	// API Keys
	apiKeyService := services.NewBaseService(db, models.APIKey{})
	apiKeyController := controllers.NewBaseController(apiKeyService).TeamScoped()
	apiKeyGroup := g.Group("/api-keys")
	apiKeyGroup.Use(middleware.RequirePermissions(db, "api_keys:read"))
	// @Summary List API keys
	// @Description Get a list of all API keys
	// @Accept json
	// @Produce json
	// @Success 200 {array} models.APIKey
	// @Failure 401 {object} map[string]string "Unauthorized"
	// @Router /api/v1/api-keys [get]
	apiKeyGroup.GET("", apiKeyController.List)
	// @Summary Get API key
	// @Description Get an API key by ID
	// @Accept json
	// @Produce json
	// @Param id path string true "API Key ID"
	// @Success 200 {object} models.APIKey
	// @Failure 404 {object} map[string]string "Not found"
	// @Router /api/v1/api-keys/{id} [get]
	apiKeyGroup.GET("/:id", apiKeyController.Get)

	// Protected API key routes
	apiKeyWriteGroup := apiKeyGroup.Group("")
	apiKeyWriteGroup.Use(middleware.RequirePermissions(db, "api_keys:write"))
	// @Summary Create API key
	// @Description Create a new API key; the key value is generated server-side
	// @Accept json
	// @Produce json
	// @Param apiKey body models.APIKey true "API Key object"
	// @Success 201 {object} models.APIKey
	// @Failure 400 {object} map[string]string "Bad request"
	// @Router /api/v1/api-keys [post]
	apiKeyWriteGroup.POST("", apiKeyController.Create)
	apiKeyWriteGroup.DELETE("/:id", apiKeyController.Delete)

	// Messages (read-only, written by the send pipeline)
	messageService := services.NewBaseService(db, models.Message{})
	messageController := controllers.NewBaseController(messageService).TeamScoped()
	messageGroup := g.Group("/messages")
	messageGroup.Use(middleware.RequirePermissions(db, "messages:read"))
	// @Summary List messages
	// @Description Get a list of all messages
	// @Accept json
	// @Produce json
	// @Success 200 {array} models.Message
	// @Router /api/v1/messages [get]
	messageGroup.GET("", messageController.List)
	// @Summary Get message
	// @Description Get a message by ID
	// @Accept json
	// @Produce json
	// @Param id path string true "Message ID"
	// @Success 200 {object} models.Message
	// @Router /api/v1/messages/{id} [get]
	messageGroup.GET("/:id", messageController.Get)

	// Files (read-only, written by the upload handler)
	fileService := services.NewBaseService(db, models.File{})
	fileController := controllers.NewBaseController(fileService).TeamScoped()
	fileGroup := g.Group("/files")
	fileGroup.Use(middleware.RequirePermissions(db, "files:read"))
	// @Summary List files
	// @Description Get a list of all files
	// @Accept json
	// @Produce json
	// @Success 200 {array} models.File
	// @Router /api/v1/files [get]
	fileGroup.GET("", fileController.List)
	// @Summary Get file
	// @Description Get a file by ID
	// @Accept json
	// @Produce json
	// @Param id path string true "File ID"
	// @Success 200 {object} models.File
	// @Router /api/v1/files/{id} [get]
	fileGroup.GET("/:id", fileController.Get)

	// Contact imports (read-only, created via the import endpoint)
	importService := services.NewBaseService(db, models.ContactImport{})
	importController := controllers.NewBaseController(importService).TeamScoped()
	importGroup := g.Group("/imports")
	importGroup.Use(middleware.RequirePermissions(db, "imports:read"))
	importGroup.GET("", importController.List)
	importGroup.GET("/:id", importController.Get)

	// Alerts (read-only, resolution has its own endpoint)
	alertService := services.NewBaseService(db, models.Alert{})
	alertController := controllers.NewBaseController(alertService).TeamScoped()
	alertGroup := g.Group("/alerts")
	alertGroup.Use(middleware.RequirePermissions(db, "alerts:read"))
	alertGroup.GET("", alertController.List)
	alertGroup.GET("/:id", alertController.Get)

	// Deliverability check history (read-only, created via check endpoints)
	domainCheckService := services.NewBaseService(db, models.DomainCheck{})
	domainCheckController := controllers.NewBaseController(domainCheckService).TeamScoped()
	domainCheckGroup := g.Group("/domain-checks")
	domainCheckGroup.Use(middleware.RequirePermissions(db, "checks:read"))
	domainCheckGroup.GET("", domainCheckController.List)
	domainCheckGroup.GET("/:id", domainCheckController.Get)

	emailCheckService := services.NewBaseService(db, models.EmailCheck{})
	emailCheckController := controllers.NewBaseController(emailCheckService).TeamScoped()
	emailCheckGroup := g.Group("/email-checks")
	emailCheckGroup.Use(middleware.RequirePermissions(db, "checks:read"))
	emailCheckGroup.GET("", emailCheckController.List)
	emailCheckGroup.GET("/:id", emailCheckController.Get)
}
