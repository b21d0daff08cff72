package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	domainPage "github.com/AzielCF/az-fbm/domains/page"
	pkgError "github.com/AzielCF/az-fbm/pkg/error"
)

func ValidateRegisterPage(ctx context.Context, request domainPage.RegisterRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.PageID, validation.Required),
		validation.Field(&request.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&request.AccessToken, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
