package queue

const (
	TypeExpireTrials    = "subscription:expire_trials"
	TypeTenantProvision = "tenant:provision"
)

type TenantProvisionPayload struct {
	TenantID string `json:"tenant_id"`
}
