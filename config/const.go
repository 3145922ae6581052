package config

const (
	PathHealthCheck = "/"

	// operator api
	PathSendCampaign           = "/send_campaign"
	PathEndCampaign            = "/end_campaign"
	PathCancelCampaign         = "/cancel_campaign"
	PathUpdateCampaignSchedule = "/update_campaign_schedule"
	PathGetCampaignReport      = "/get_campaign_report"
	PathExportCampaignReport   = "/export_campaign_report"
	PathGetMailSettings        = "/get_mail_settings"
	PathUpdateMailSettings     = "/update_mail_settings"

	// tracking, mounted without the api prefix; links already sent depend on these
	PathTrackOpen    = "/Track/Open"
	PathTrackClick   = "/Track/Click"
	PathTrackLanding = "/Track/Landing"
	PathTrackSubmit  = "/Track/Submit"
)

const (
	DefaultPort   = 9090
	LogLevelDebug = "DEBUG"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	TransportSMTP  = "smtp"
	TransportBrevo = "brevo"

	EventSinkDB = "db"
	EventSinkMQ = "mq"
)
