package recipientrole

import (
	"strings"

	"docprep/api/internal/domain"
)

var ordered = []domain.RecipientRole{
	domain.RoleSigner,
	domain.RoleApprover,
	domain.RoleViewer,
	domain.RoleCC,
}

func Valid(role string) bool {
	switch domain.RecipientRole(role) {
	case domain.RoleSigner, domain.RoleApprover, domain.RoleViewer, domain.RoleCC:
		return true
	default:
		return false
	}
}

// Normalize maps free-form input onto a role, defaulting to signer.
func Normalize(role string) domain.RecipientRole {
	candidate := strings.ToUpper(strings.TrimSpace(role))
	if Valid(candidate) {
		return domain.RecipientRole(candidate)
	}
	return domain.RoleSigner
}

func Names() []string {
	out := make([]string, 0, len(ordered))
	for _, r := range ordered {
		out = append(out, string(r))
	}
	return out
}

// CanOwnFields reports whether fields may be placed for the role. Viewers and
// CC recipients only receive the document.
func CanOwnFields(role domain.RecipientRole) bool {
	switch role {
	case domain.RoleSigner, domain.RoleApprover:
		return true
	default:
		return false
	}
}

// RequiresSignature reports whether the role must own a signature field
// before the document can be sent.
func RequiresSignature(role domain.RecipientRole) bool {
	return role == domain.RoleSigner
}

func IsSignatureField(t domain.FieldType) bool {
	return t == domain.FieldSignature || t == domain.FieldFreeSignature
}
