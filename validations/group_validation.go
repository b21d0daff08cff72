package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	domainGroup "github.com/AzielCF/az-fbm/domains/group"
	pkgError "github.com/AzielCF/az-fbm/pkg/error"
)

func ValidateCreateGroup(ctx context.Context, request domainGroup.CreateRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.PageID, validation.Required),
		validation.Field(&request.Name, validation.Required, validation.Length(1, 120)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateAddMember(ctx context.Context, request domainGroup.MemberRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.RecipientID, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
