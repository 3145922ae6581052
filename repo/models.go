package repo

// Models lists every table the service owns, in migration order.
func Models() []interface{} {
	return []interface{}{
		new(Campaign),
		new(CampaignTarget),
		new(TargetUser),
		new(TargetGroup),
		new(MailTemplate),
		new(LandingPageTemplate),
		new(MailSendLog),
		new(TrackingEvent),
		new(MailSettings),
		new(CampaignLease),
		new(ScheduledJob),
	}
}
