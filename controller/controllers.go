// api/controller/controllers.go
package controller

import (
	"github.com/dev-sgill/arbiter/api/service"
	"github.com/dev-sgill/arbiter/api/util"
)

type Controllers struct {
	Policy    *PolicyController
	Decision  *DecisionController
	Attribute *AttributeController
}

func InitializeControllers(services *service.Services, attributeBus *util.AttributeBus) *Controllers {
	return &Controllers{
		Policy:    NewPolicyController(services.Policy),
		Decision:  NewDecisionController(services.Decision),
		Attribute: NewAttributeController(attributeBus),
	}
}
