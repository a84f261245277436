package email

const (
	subjectWelcome              = "Welcome to YaadMarket"
	subjectVerificationApproved = "Your agent verification was approved"
	subjectVerificationRejected = "Your agent verification needs attention"
	subjectPaymentConfirmed     = "Your YaadMarket access is active"
	subjectRequestAssignedFmt   = "New client request in %s"
)
