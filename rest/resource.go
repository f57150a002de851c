// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package rest

import (
	"net/http"

	"github.com/z5labs/crud/controller"
	"github.com/z5labs/crud/model"
	"github.com/z5labs/crud/params"
)

type countResponse struct {
	Count int `json:"count"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Resource registers every CRUD operation of h under basePath:
//
//	GET    {base}                          Index
//	GET    {base}/utils/count              Count
//	POST   {base}/utils/aggregate          Aggregate
//	GET    {base}/utils/bulkShow           BulkShow
//	PUT    {base}/utils/bulkUpdate         BulkUpdate
//	POST   {base}/utils/bulkUpload         BulkUpload
//	DELETE {base}/utils/bulkDelete         BulkDestroy
//	DELETE {base}/utils/bulkMarkAsDeleted  BulkMarkAsDeleted
//	POST   {base}                          Create
//	GET    {base}/{id}                     Show
//	PUT    {base}/{id}                     Update
//	PUT    {base}/{id}/rucc                Rucc
//	DELETE {base}/{id}                     Destroy
//	DELETE {base}/{id}/markAsDeleted       MarkAsDeleted
//
// opts apply to every operation.
func Resource(basePath string, h *model.Handle, opts ...OperationOption) ApiOption {
	return apiOptionFunc(func(ao *ApiOptions) {
		base := BasePath(basePath)
		utils := base.Segment("utils")
		record := base.Param(controller.ParamID, Description(h.Name+" id"))

		doc := DefinitionSchema(h.Schema.Definition())
		docs := arraySchema(doc)
		results := arraySchema(mustReflect(controller.BulkResult{}))
		message := mustReflect(messageResponse{})
		ids := QueryParam(controller.ParamID, Required(), Description("comma separated "+h.Name+" ids"))
		selectParam := QueryParam(controller.ParamSelect, Description("comma separated field paths to return"))
		filter := QueryParam(controller.ParamFilter, Description("JSON encoded filter"))

		route := func(method string, path Path, op controller.Operation, id, summary string, ropts ...OperationOption) {
			all := []OperationOption{
				OperationID(id + h.Name),
				Summary(summary),
				Tags(h.Name),
				Mapper(h.SwagMapper),
				ReturnsProblem(http.StatusBadRequest),
				ReturnsProblem(http.StatusInternalServerError),
			}
			all = append(all, ropts...)
			all = append(all, opts...)
			Handle(method, path, op, all...).ApplyApiOption(ao)
		}

		route(http.MethodGet, base, h.Index, "index", "List "+h.Name+" records",
			filter,
			QueryParam(controller.ParamSort, Description("comma separated field paths, prefix with - to sort descending")),
			QueryParam(controller.ParamPage, Description("page number starting at 1")),
			QueryParam(controller.ParamCount, Description("page size, -1 returns every record")),
			selectParam,
			Returns(http.StatusOK, docs),
		)
		route(http.MethodGet, utils.Segment("count"), h.Count, "count", "Count "+h.Name+" records",
			filter,
			Returns(http.StatusOK, mustReflect(countResponse{})),
		)
		route(http.MethodPost, utils.Segment("aggregate"), h.Aggregate, "aggregate", "Run an aggregation pipeline over "+h.Name+" records",
			JsonBody(params.DataKey, arraySchema(mustReflect(map[string]any{}))),
			Returns(http.StatusOK, arraySchema(mustReflect(map[string]any{}))),
			ReturnsProblem(http.StatusNotImplemented),
		)
		route(http.MethodGet, utils.Segment("bulkShow"), h.BulkShow, "bulkShow", "Get several "+h.Name+" records",
			ids,
			selectParam,
			Returns(http.StatusOK, docs),
		)
		route(http.MethodPut, utils.Segment("bulkUpdate"), h.BulkUpdate, "bulkUpdate", "Update several "+h.Name+" records",
			ids,
			JsonBody(params.DataKey, doc),
			Returns(http.StatusOK, results),
			Returns(http.StatusMultiStatus, results),
		)
		route(http.MethodPost, utils.Segment("bulkUpload"), h.BulkUpload, "bulkUpload", "Create several "+h.Name+" records",
			JsonBody(params.DataKey, docs),
			Returns(http.StatusOK, results),
			Returns(http.StatusMultiStatus, results),
		)
		route(http.MethodDelete, utils.Segment("bulkDelete"), h.BulkDestroy, "bulkDestroy", "Delete several "+h.Name+" records",
			ids,
			Returns(http.StatusOK, results),
			Returns(http.StatusMultiStatus, results),
		)
		route(http.MethodDelete, utils.Segment("bulkMarkAsDeleted"), h.BulkMarkAsDeleted, "bulkMarkAsDeleted", "Mark several "+h.Name+" records as deleted",
			ids,
			Returns(http.StatusOK, results),
			Returns(http.StatusMultiStatus, results),
		)
		route(http.MethodPost, base, h.Create, "create", "Create "+h.Name+" records",
			JsonBody(params.DataKey, doc),
			Returns(http.StatusCreated, doc),
			ReturnsProblem(http.StatusConflict),
		)
		route(http.MethodGet, record, h.Show, "show", "Get a "+h.Name+" record",
			selectParam,
			Returns(http.StatusOK, doc),
			ReturnsProblem(http.StatusNotFound),
		)
		route(http.MethodPut, record, h.Update, "update", "Update a "+h.Name+" record",
			JsonBody(params.DataKey, doc),
			Returns(http.StatusOK, doc),
			ReturnsProblem(http.StatusNotFound),
			ReturnsProblem(http.StatusConflict),
		)
		route(http.MethodPut, record.Segment("rucc"), h.Rucc, "rucc", "Update a "+h.Name+" record if its version is unchanged",
			JsonBody(params.DataKey, doc),
			Returns(http.StatusOK, doc),
			ReturnsProblem(http.StatusNotFound),
			ReturnsProblem(http.StatusConflict),
		)
		route(http.MethodDelete, record, h.Destroy, "destroy", "Delete a "+h.Name+" record",
			Returns(http.StatusOK, message),
			ReturnsProblem(http.StatusNotFound),
		)
		route(http.MethodDelete, record.Segment("markAsDeleted"), h.MarkAsDeleted, "markAsDeleted", "Mark a "+h.Name+" record as deleted",
			Returns(http.StatusOK, message),
			ReturnsProblem(http.StatusNotFound),
		)
	})
}
