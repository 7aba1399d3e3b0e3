// Package docs registers the OpenAPI document of the pdf2png API with swag.
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
        "/pdf2img": {
            "post": {
                "description": "Renders each page of each uploaded PDF and stores the images under /uploads/{conversionId}/",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Conversions"],
                "summary": "Convert uploaded PDFs to images",
                "parameters": [
                    {"type": "file", "description": "PDF files", "name": "theFiles", "in": "formData", "required": true},
                    {"type": "number", "description": "Viewport scale", "name": "scale", "in": "formData"},
                    {"type": "string", "description": "png or jpeg", "name": "format", "in": "formData"},
                    {"type": "integer", "description": "First page (1-based)", "name": "first", "in": "formData"},
                    {"type": "integer", "description": "Last page (1-based)", "name": "last", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "data: success, conversions"},
                    "400": {"description": "No files or invalid parameters"},
                    "405": {"description": "Method not allowed"},
                    "422": {"description": "Document could not be loaded"},
                    "500": {"description": "Page render failed"}
                }
            }
        },
        "/pdf2img/stream": {
            "post": {
                "description": "Responds with newline-delimited JSON, one line per page carrying a data URL, or an error line",
                "consumes": ["multipart/form-data"],
                "produces": ["application/x-ndjson"],
                "tags": ["Conversions"],
                "summary": "Stream page images of an uploaded PDF",
                "parameters": [
                    {"type": "file", "description": "PDF file", "name": "theFiles", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "One line per page"},
                    "400": {"description": "No file or invalid parameters"},
                    "422": {"description": "Document could not be loaded"}
                }
            }
        },
        "/conversions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Conversions"],
                "summary": "Get recent conversions",
                "parameters": [
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "List of conversions"}}
            }
        },
        "/conversions/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Conversions"],
                "summary": "Get conversion by ID",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Conversion"}, "404": {"description": "Conversion not found"}}
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["Conversions"],
                "summary": "Delete a conversion",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Deleted"}, "404": {"description": "Conversion not found"}, "409": {"description": "Conversion still running"}}
            }
        },
        "/conversions/{id}/images": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Conversions"],
                "summary": "List conversion images",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "id and images"}, "404": {"description": "Conversion not found"}}
            }
        },
        "/conversions/{id}/archive": {
            "get": {
                "produces": ["application/zip"],
                "tags": ["Archive"],
                "summary": "Download a conversion as a zip archive",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "name", "in": "query"}
                ],
                "responses": {"200": {"description": "Zip archive"}, "404": {"description": "Conversion not found"}}
            }
        },
        "/archive": {
            "post": {
                "description": "Fetches every entry source and returns a zip of name.format files",
                "consumes": ["application/json"],
                "produces": ["application/zip"],
                "tags": ["Archive"],
                "summary": "Export images as a zip archive",
                "responses": {
                    "200": {"description": "Zip archive"},
                    "400": {"description": "Invalid request"},
                    "502": {"description": "An entry could not be fetched"}
                }
            }
        },
        "/jobs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "Get recent jobs",
                "responses": {"200": {"description": "List of jobs"}}
            }
        },
        "/jobs/active": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "Get active jobs",
                "responses": {"200": {"description": "List of active jobs"}}
            }
        },
        "/jobs/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Jobs"],
                "summary": "Get job by ID",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Job details"}, "400": {"description": "Invalid job ID"}, "404": {"description": "Job not found"}}
            }
        },
        "/cleanup": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Trigger cleanup",
                "responses": {"200": {"description": "Job created with jobId"}}
            }
        },
        "/about": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Get server information",
                "responses": {"200": {"description": "Server information"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "pdf2png API",
	Description:      "Convert PDF documents into PNG or JPEG page images.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
