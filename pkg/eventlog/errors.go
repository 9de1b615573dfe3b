package eventlog

import "github.com/governedloop/core/pkg/errs"

func errInvalidRel(rel EdgeRel) error {
	return errs.NewValidationError("refs[].rel", "unknown edge relation: "+string(rel))
}

func errMissingContentHash(kind, id string) error {
	return errs.NewValidationError("refs[].meta.content_hash",
		"content-addressed ref kind "+kind+" ("+id+") is missing a valid content_hash")
}
