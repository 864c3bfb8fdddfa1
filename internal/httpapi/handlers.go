package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"mortuary/internal/core"
	"mortuary/internal/tabular"
	"mortuary/pkg/domain"
)

// Options lists the enumerated choices a form needs.
type Options struct {
	Sex             []string `json:"sex"`
	IDDocsSeen      []string `json:"id_docs_seen"`
	AutopsyRequired []string `json:"autopsy_required"`
	ReleaseStatus   []string `json:"release_status"`
	Columns         []string `json:"columns"`
}

func (s *Server) options(c *fiber.Ctx) error {
	return jsonOK(c, "ok", Options{
		Sex:             domain.SexOptions,
		IDDocsSeen:      domain.YesNoOptions,
		AutopsyRequired: domain.AutopsyOptions,
		ReleaseStatus:   domain.StatusOptions,
		Columns:         domain.Columns,
	})
}

// queryValues collects every query parameter, keeping repeats.
func queryValues(c *fiber.Ctx) map[string][]string {
	out := map[string][]string{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		out[string(k)] = append(out[string(k)], string(v))
	})
	return out
}

func filterFromQuery(c *fiber.Ctx) (core.Filter, error) {
	f, err := core.ParseFilter(queryValues(c))
	if err != nil {
		return core.Filter{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return f, nil
}

func (s *Server) listRecords(c *fiber.Ctx) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	records, err := s.svc.Find(c.UserContext(), f)
	if err != nil {
		return err
	}
	if records == nil {
		records = []domain.Record{}
	}
	return jsonOK(c, fmt.Sprintf("%d records", len(records)), records)
}

func (s *Server) getRecord(c *fiber.Ctx) error {
	rec, err := s.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return jsonOK(c, "ok", rec)
}

func parseInput(c *fiber.Ctx) (core.RecordInput, error) {
	var in core.RecordInput
	if err := c.BodyParser(&in); err != nil {
		return core.RecordInput{}, fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	return in, nil
}

func (s *Server) createRecord(c *fiber.Ctx) error {
	in, err := parseInput(c)
	if err != nil {
		return err
	}
	rec, err := s.svc.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	c.Location("/api/v1/records/" + rec.RecordID)
	return jsonCreated(c, "record created", rec)
}

func (s *Server) updateRecord(c *fiber.Ctx) error {
	in, err := parseInput(c)
	if err != nil {
		return err
	}
	rec, err := s.svc.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	return jsonOK(c, "record updated", rec)
}

func (s *Server) releaseRecord(c *fiber.Ctx) error {
	rec, err := s.svc.MarkReleased(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return jsonOK(c, "record released", rec)
}

func (s *Server) transferRecord(c *fiber.Ctx) error {
	rec, err := s.svc.MarkTransferred(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return jsonOK(c, "record transferred", rec)
}

func (s *Server) exportRecords(c *fiber.Ctx) error {
	format, err := tabular.ParseFormat(c.Query("format"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := s.svc.Export(c.UserContext(), &buf, f, format); err != nil {
		return err
	}
	c.Attachment(core.ExportFileName(f, format))
	c.Set(fiber.HeaderContentType, format.ContentType())
	return c.Send(buf.Bytes())
}

// importRecords replaces the whole table. The caller must pass confirm=true;
// the upload is either a multipart "file" field or the raw request body.
func (s *Server) importRecords(c *fiber.Ctx) error {
	if !c.QueryBool("confirm") {
		return fiber.NewError(fiber.StatusBadRequest, "import replaces every record; repeat with confirm=true")
	}
	formatName := c.Query("format")
	var body io.Reader
	if fh, err := c.FormFile("file"); err == nil {
		if formatName == "" {
			formatName = filepath.Ext(fh.Filename)
		}
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "cannot read upload: "+err.Error())
		}
		defer f.Close()
		body = f
	} else {
		body = bytes.NewReader(c.Body())
	}
	format, err := tabular.ParseFormat(formatName)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	summary, err := s.svc.ImportReplace(c.UserContext(), body, format)
	if err != nil {
		return err
	}
	return jsonOK(c, fmt.Sprintf("imported %d records", summary.Rows), summary)
}

func (s *Server) createBackup(c *fiber.Ctx) error {
	info, err := s.svc.Backup(c.UserContext())
	if err != nil {
		return err
	}
	return jsonCreated(c, "backup written", info)
}

func (s *Server) listBackups(c *fiber.Ctx) error {
	list, err := s.svc.Backups(c.UserContext())
	if err != nil {
		return err
	}
	return jsonOK(c, fmt.Sprintf("%d backups", len(list)), list)
}
