package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"homenas/pkg/log"
	"homenas/pkg/metrics"
	"homenas/pkg/store"

	"github.com/labstack/echo/v4"
)

const uploadField = "file"

var errNoFilePart = errors.New("file parameter is required")

type uploadResponse struct {
	Success bool `json:"success"`
	store.UploadResult
	Message string `json:"message"`
}

// uploadFile streams the "file" part straight into the store without buffering
// the form in memory or in a temp directory.
func (s *NASServer) uploadFile(ctx echo.Context) error {
	log.Info().Msg("File upload request received")

	rel := ctx.QueryParam("path")
	overwrite, err := queryBool(ctx, "overwrite")
	if err != nil {
		return errorJSON(ctx, http.StatusBadRequest, sentence(err.Error()))
	}

	dir, err := s.root.Resolve(rel)
	if err != nil {
		return storeError(ctx, err, "Directory", rel)
	}

	reader, err := ctx.Request().MultipartReader()
	if err != nil {
		log.Error().Err(err).Msg("Upload is not a multipart form")
		return errorJSON(ctx, http.StatusBadRequest, "Multipart form with a file field is required")
	}

	part, err := nextFilePart(reader)
	if err != nil {
		log.Error().Err(err).Msg("File parameter is required")
		return errorJSON(ctx, http.StatusBadRequest, sentence(errNoFilePart.Error()))
	}
	defer func() {
		if err := part.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close upload part")
		}
	}()

	result, err := s.store.Upload(ctx.Request().Context(), store.UploadRequest{
		Dir:       dir,
		Filename:  part.FileName(),
		Content:   part,
		Overwrite: overwrite,
	})
	if err != nil {
		metrics.RecordUpload(0, false)
		var exists store.AlreadyExistsError
		if errors.As(err, &exists) {
			return errorJSON(ctx, http.StatusConflict, "File already exists. Use overwrite=true to replace.")
		}
		return storeError(ctx, err, "Directory", rel)
	}
	metrics.RecordUpload(result.Size, true)

	return ctx.JSON(http.StatusOK, uploadResponse{
		Success:      true,
		UploadResult: *result,
		Message:      "File uploaded successfully",
	})
}

// nextFilePart skips form fields until the upload part.
func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFilePart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == uploadField {
			return part, nil
		}
		if err := part.Close(); err != nil {
			return nil, err
		}
	}
}
