package controller

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"structured-persistent-logger/fields"
	"structured-persistent-logger/internal/model"
)

type FieldController struct {
	store *fields.Store
}

func NewFieldController(store *fields.Store) *FieldController {
	return &FieldController{
		store: store,
	}
}

func RegisterFieldRoutes(router *gin.Engine, controller *FieldController) {
	v1 := router.Group("/api/v1/fields")
	{
		v1.GET("", controller.GetFields)
		v1.POST("", controller.SetFields)
		v1.DELETE("", controller.ClearFields)
		v1.GET("/:key", controller.GetField)
		v1.PUT("/:key", controller.SetField)
		v1.DELETE("/:key", controller.DeleteField)
	}
}

// GetFields godoc
// @Summary      List persistent fields
// @Description  Returns a snapshot of every persistent field attached to log records.
// @Tags         fields
// @Produce      json
// @Success      200  {object}  model.Response "Snapshot of persistent fields"
// @Router       /api/v1/fields [get]
func (c *FieldController) GetFields(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, model.NewResponse("ok", c.store.Snapshot()))
}

// GetField godoc
// @Summary      Get a persistent field
// @Tags         fields
// @Produce      json
// @Param        key  path      string  true  "Field key"
// @Success      200  {object}  model.FieldResponse
// @Failure      404  {object}  model.Response "Field not set"
// @Router       /api/v1/fields/{key} [get]
func (c *FieldController) GetField(ctx *gin.Context) {
	key := ctx.Param("key")
	value, ok := c.store.Get(key)
	if !ok {
		ctx.JSON(http.StatusNotFound, model.NewResponse("Field not set", nil))
		return
	}
	ctx.JSON(http.StatusOK, model.FieldResponse{Key: key, Value: value})
}

// SetField godoc
// @Summary      Set a persistent field
// @Description  The request body is any JSON value and becomes the field's value.
// @Tags         fields
// @Accept       json
// @Produce      json
// @Param        key   path      string  true  "Field key"
// @Success      200   {object}  model.FieldResponse
// @Failure      400   {object}  model.Response "Invalid JSON body"
// @Router       /api/v1/fields/{key} [put]
func (c *FieldController) SetField(ctx *gin.Context) {
	key := ctx.Param("key")
	value, err := decodeBody(ctx.Request.Body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid JSON body: "+err.Error(), nil))
		return
	}

	c.store.Set(key, value)
	slog.Debug("persistent field set", "key", key)
	ctx.JSON(http.StatusOK, model.FieldResponse{Key: key, Value: value})
}

// SetFields godoc
// @Summary      Set several persistent fields
// @Description  The request body is a JSON object; each member is set as a field.
// @Tags         fields
// @Accept       json
// @Produce      json
// @Success      200  {object}  model.Response "Keys that were set"
// @Failure      400  {object}  model.Response "Body is not a JSON object"
// @Router       /api/v1/fields [post]
func (c *FieldController) SetFields(ctx *gin.Context) {
	body, err := decodeBody(ctx.Request.Body)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid JSON body: "+err.Error(), nil))
		return
	}
	obj, ok := body.(map[string]any)
	if !ok {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Body must be a JSON object", nil))
		return
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]fields.Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fields.KV(k, obj[k]))
	}
	if err := c.store.TrySetMany(pairs...); err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse(err.Error(), nil))
		return
	}

	slog.Debug("persistent fields set", "keys", keys)
	ctx.JSON(http.StatusOK, model.NewResponse("ok", keys))
}

// DeleteField godoc
// @Summary      Remove a persistent field
// @Tags         fields
// @Param        key  path  string  true  "Field key"
// @Success      204
// @Router       /api/v1/fields/{key} [delete]
func (c *FieldController) DeleteField(ctx *gin.Context) {
	c.store.Delete(ctx.Param("key"))
	ctx.Status(http.StatusNoContent)
}

// ClearFields godoc
// @Summary      Remove all persistent fields
// @Tags         fields
// @Success      204
// @Router       /api/v1/fields [delete]
func (c *FieldController) ClearFields(ctx *gin.Context) {
	c.store.Clear()
	slog.Info("persistent fields cleared")
	ctx.Status(http.StatusNoContent)
}

func decodeBody(r io.Reader) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty body")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}
