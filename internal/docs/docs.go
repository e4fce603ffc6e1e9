// Package docs holds the OpenAPI document served by gin-swagger. It follows
// the layout swag init produces so regenerating from the handler annotations
// replaces it in place.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/login": {"post": {"tags": ["auth"], "summary": "Start a session", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}},
        "/logout": {"post": {"tags": ["auth"], "summary": "End the session", "responses": {"204": {"description": "No Content"}}}},
        "/admin/users": {"post": {"tags": ["auth"], "summary": "Create a user", "parameters": [{"type": "string", "name": "X-Admin-Key", "in": "header", "required": true}], "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}, "409": {"description": "Conflict"}}}},
        "/keywords": {"post": {"tags": ["analysis"], "summary": "Analyse a website", "responses": {"200": {"description": "OK"}, "400": {"description": "Missing URL"}, "500": {"description": "Upstream failure or timeout"}}}},
        "/scrape": {"post": {"tags": ["analysis"], "summary": "Scrape a page or site", "responses": {"200": {"description": "OK"}, "400": {"description": "Missing URL"}}}},
        "/outline": {"post": {"tags": ["analysis"], "summary": "Blog outline for a keyword", "responses": {"200": {"description": "OK"}}}},
        "/queries": {"post": {"tags": ["analysis"], "summary": "Search queries for an ICP", "responses": {"200": {"description": "OK"}}}},
        "/rank": {"post": {"tags": ["analysis"], "summary": "Rank check on Google and Bing", "responses": {"200": {"description": "OK"}}}},
        "/blog-plan": {"post": {"tags": ["analysis"], "summary": "Blog plan from markdown", "responses": {"200": {"description": "OK"}}}},
        "/gen-report": {"post": {"tags": ["analysis"], "summary": "Visibility report for a query", "responses": {"200": {"description": "OK"}}}},
        "/gap-report": {"post": {"tags": ["analysis"], "summary": "Content gap report", "responses": {"200": {"description": "OK"}}}},
        "/my-data": {"get": {"tags": ["user"], "summary": "Full user record", "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}, "401": {"description": "Not authenticated"}}}},
        "/targets": {"get": {"tags": ["cycle"], "summary": "Aggregated keyword view", "parameters": [{"type": "string", "name": "search", "in": "query"}, {"type": "string", "name": "sort", "in": "query"}, {"type": "integer", "name": "page", "in": "query"}], "responses": {"200": {"description": "OK"}}}},
        "/batch": {"post": {"tags": ["cycle"], "summary": "Ensure the open batch", "responses": {"200": {"description": "OK"}}}},
        "/batch/keywords": {"post": {"tags": ["cycle"], "summary": "Add keywords to the batch", "responses": {"200": {"description": "OK"}, "409": {"description": "Cycle locked"}}}},
        "/batch/remove": {"post": {"tags": ["cycle"], "summary": "Remove a keyword from the batch", "responses": {"200": {"description": "OK"}}}},
        "/requests": {"post": {"tags": ["cycle"], "summary": "Submit one keyword", "parameters": [{"type": "string", "name": "Idempotency-Key", "in": "header"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Locked or quota reached"}}}},
        "/requests/batch": {"post": {"tags": ["cycle"], "summary": "Submit the whole batch", "parameters": [{"type": "string", "name": "Idempotency-Key", "in": "header"}], "responses": {"200": {"description": "OK"}, "400": {"description": "Empty batch"}, "409": {"description": "Locked or quota reached"}}}},
        "/requests/{id}": {"patch": {"tags": ["cycle"], "summary": "Edit a requested card", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "403": {"description": "Bad password"}, "404": {"description": "Not Found"}}}},
        "/cycle/unlock": {"post": {"tags": ["cycle"], "summary": "Archive the cycle and unlock", "responses": {"200": {"description": "OK"}, "403": {"description": "Bad password"}}}},
        "/archives": {"get": {"tags": ["cycle"], "summary": "Past cycles", "parameters": [{"type": "integer", "name": "page", "in": "query"}], "responses": {"200": {"description": "OK"}}}},
        "/icps": {"get": {"tags": ["sources"], "summary": "ICP groups", "responses": {"200": {"description": "OK"}}}, "put": {"tags": ["sources"], "summary": "Replace ICP groups", "responses": {"200": {"description": "OK"}}}},
        "/icps/targets": {"post": {"tags": ["sources"], "summary": "Toggle an ICP keyword", "responses": {"204": {"description": "No Content"}}}},
        "/competitors": {"get": {"tags": ["sources"], "summary": "Competitors", "responses": {"200": {"description": "OK"}}}, "post": {"tags": ["sources"], "summary": "Add a competitor", "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}},
        "/competitors/targets": {"post": {"tags": ["sources"], "summary": "Toggle a competitor keyword", "responses": {"204": {"description": "No Content"}}}},
        "/performance-blogs": {"get": {"tags": ["sources"], "summary": "Performance blogs", "responses": {"200": {"description": "OK"}}}, "post": {"tags": ["sources"], "summary": "Add a performance blog", "responses": {"202": {"description": "Accepted"}}}},
        "/performance-blogs/targets": {"post": {"tags": ["sources"], "summary": "Toggle a blog keyword", "responses": {"204": {"description": "No Content"}}}},
        "/report-targets": {"post": {"tags": ["sources"], "summary": "Toggle a report keyword", "responses": {"204": {"description": "No Content"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "ICP Dashboard API",
	Description:      "Keyword research, blog request cycles and visibility reports for ICP marketing.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
