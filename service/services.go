// api/service/services.go
package service

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/dev-sgill/arbiter/api/audit"
	"github.com/dev-sgill/arbiter/api/dao"
	"github.com/dev-sgill/arbiter/api/model"
	"github.com/dev-sgill/arbiter/api/pdp/engine"
	pdpmodel "github.com/dev-sgill/arbiter/api/pdp/model"
	"github.com/dev-sgill/arbiter/api/util"
)

// IPolicyService is the policy management surface exposed to controllers.
type IPolicyService interface {
	CreatePolicy(ctx context.Context, policy model.PolicyDefinition, userID string) (*model.PolicyDefinition, error)
	UpdatePolicy(ctx context.Context, policy model.PolicyDefinition, userID string) (*model.PolicyDefinition, error)
	DeletePolicy(ctx context.Context, policyID string, userID string) error
	GetPolicy(ctx context.Context, policyID string) (*model.PolicyDefinition, error)
	ListPolicies(ctx context.Context, limit int, offset int) ([]*model.PolicyDefinition, error)
	BulkCreatePolicies(ctx context.Context, policies []model.PolicyDefinition, userID string) ([]string, error)
	SearchPolicies(ctx context.Context, criteria model.PolicySearchCriteria) ([]*model.PolicyDefinition, error)
}

// IDecisionService is the decision surface exposed to controllers.
type IDecisionService interface {
	Decide(ctx context.Context, sub pdpmodel.AuthorizationSubscription) (pdpmodel.Vote, error)
	Subscribe(ctx context.Context, sub pdpmodel.AuthorizationSubscription) (<-chan pdpmodel.Vote, string, error)
	Coverage(ctx context.Context, sub pdpmodel.AuthorizationSubscription) (pdpmodel.VoteWithCoverage, error)
	ReloadConfiguration(ctx context.Context) error
	UpdateConfiguration(ctx context.Context, config model.PDPConfiguration) error
	QueryDecisionLogs(ctx context.Context, from, to time.Time, subjectID, decision string) ([]audit.DecisionLog, error)
}

type Services struct {
	Policy   IPolicyService
	Decision IDecisionService
}

func InitializeServices(
	driver neo4j.Driver,
	pdp *engine.PolicyDecisionPoint,
	auditService audit.Service,
	validationUtil *util.ValidationUtil,
	cacheService *util.CacheService,
	notificationSvc *util.NotificationService,
	eventBus *util.EventBus,
	configID string,
	decisionTimeout time.Duration,
) (*Services, error) {
	policyDAO := dao.NewPolicyDAO(driver)
	configDAO := dao.NewConfigurationDAO(driver, policyDAO)

	services := &Services{
		Policy:   NewPolicyService(policyDAO, validationUtil, cacheService, notificationSvc, eventBus),
		Decision: NewDecisionService(pdp, configDAO, auditService, validationUtil, cacheService, eventBus, configID, decisionTimeout),
	}

	return services, nil
}
