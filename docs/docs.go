// Package docs holds the OpenAPI document served under /swagger.
// Regenerate it with `swag init -g cmd/server/main.go` after changing the
// handler annotations.
package docs

import "github.com/swaggo/swag/v2"

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
        "/archives/{path}": {
            "get": {
                "produces": ["application/zip"],
                "tags": ["batches"],
                "summary": "Download a published batch archive",
                "parameters": [
                    {"type": "string", "description": "Archive path", "name": "path", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            },
            "delete": {
                "tags": ["batches"],
                "summary": "Delete a published batch archive",
                "parameters": [
                    {"type": "string", "description": "Archive path", "name": "path", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/batches": {
            "post": {
                "description": "Failed positions are listed as JSON in the X-Batch-Failures header",
                "consumes": ["application/json"],
                "produces": ["application/zip"],
                "tags": ["batches"],
                "summary": "Package many documents into one zip archive",
                "parameters": [
                    {"description": "Batch request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.BatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/documents": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "List documents",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/documents/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Get a document and the state of its variants",
                "parameters": [
                    {"type": "string", "description": "Document ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/documents/{id}/{file}": {
            "get": {
                "produces": ["application/pdf"],
                "tags": ["documents"],
                "summary": "Download the PDF of a document variant",
                "parameters": [
                    {"type": "string", "description": "Document ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "1page.pdf or 4pages.pdf", "name": "file", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "304": {"description": "Not Modified"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/documents/{id}/{variant}/error": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Diagnostic of the last failed generation",
                "parameters": [
                    {"type": "string", "description": "Document ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "1page or 4pages", "name": "variant", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            },
            "delete": {
                "tags": ["documents"],
                "summary": "Clear the last failed generation",
                "parameters": [
                    {"type": "string", "description": "Document ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "1page or 4pages", "name": "variant", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/documents/{id}/{variant}/preview": {
            "get": {
                "produces": ["text/html"],
                "tags": ["documents"],
                "summary": "Printable HTML of a document variant",
                "parameters": [
                    {"type": "string", "description": "Document ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "1page or 4pages", "name": "variant", "in": "path", "required": true},
                    {"type": "boolean", "description": "Open the print dialog on load", "name": "print", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/documents/{id}/{variant}/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["documents"],
                "summary": "Generation state of a document variant",
                "parameters": [
                    {"type": "string", "description": "Document ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "1page or 4pages", "name": "variant", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Liveness and loaded document count",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/preload": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["batches"],
                "summary": "Warm the artifact cache in the background",
                "parameters": [
                    {"description": "Preload request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.PreloadRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        },
        "/system/info": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Version and uptime",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.Response"}}
                }
            }
        }
    },
    "definitions": {
        "dto.BatchRequest": {
            "type": "object",
            "required": ["ids", "variant"],
            "properties": {
                "category": {"type": "string", "maxLength": 64},
                "ids": {"type": "array", "minItems": 1, "items": {"type": "string"}},
                "variant": {"type": "string", "enum": ["1page", "4pages"]}
            }
        },
        "dto.ErrorInfo": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "diagnostic": {},
                "message": {"type": "string"},
                "request_id": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "dto.PreloadRequest": {
            "type": "object",
            "required": ["ids"],
            "properties": {
                "delay_ms": {"type": "integer", "maximum": 60000, "minimum": 0},
                "ids": {"type": "array", "minItems": 1, "items": {"type": "string"}},
                "variants": {"type": "array", "items": {"type": "string", "enum": ["1page", "4pages"]}}
            }
        },
        "dto.Response": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"$ref": "#/definitions/dto.ErrorInfo"},
                "success": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Fiche Santé document API",
	Description:      "PDF and printable HTML versions of patient information sheets",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
