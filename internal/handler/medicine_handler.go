package handler

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"telemed/internal/app/db"
	"telemed/internal/pkg/errs"
	"telemed/internal/pkg/logx"
	"telemed/internal/pkg/resp"
)

// MinSearchQueryLength is the shortest medicine search accepted.
const MinSearchQueryLength = 2

func medicineResponse(m db.Medicine) map[string]any {
	return map[string]any{
		"id":          m.ID,
		"code":        m.Code,
		"name":        m.Name,
		"genericName": m.GenericName,
		"strength":    m.Strength,
		"form":        m.Form,
	}
}

func medicinesResponse(list []db.Medicine) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, m := range list {
		out = append(out, medicineResponse(m))
	}
	return out
}

// HandleSearchMedicines searches active medicines by name, generic name, or
// code. Queries shorter than MinSearchQueryLength are rejected.
func HandleSearchMedicines(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := requireDoctor(w, r); identity == nil {
			return
		}

		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if utf8.RuneCountInString(query) < MinSearchQueryLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrSearchQueryTooShort))
			return
		}

		medicines, err := deps.DB.SearchMedicines(r.Context(), query)
		if err != nil {
			logx.Error(err, "medicine search failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"medicines": medicinesResponse(medicines),
		})
	}
}

// HandleListMedicines returns all active medicines.
func HandleListMedicines(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := requireDoctor(w, r); identity == nil {
			return
		}

		medicines, err := deps.DB.ListActiveMedicines(r.Context())
		if err != nil {
			logx.Error(err, "medicine list failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"medicines": medicinesResponse(medicines),
		})
	}
}
