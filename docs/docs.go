// Package docs registers the swagger document for the tcpsweep API.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "schemes": {{ marshal .Schemes }},
  "swagger": "2.0",
  "info": {
    "description": "{{escape .Description}}",
    "title": "{{.Title}}",
    "license": {
      "name": "MIT",
      "url": "https://opensource.org/licenses/MIT"
    },
    "version": "{{.Version}}"
  },
  "host": "{{.Host}}",
  "basePath": "{{.BasePath}}",
  "securityDefinitions": {
    "ApiKeyAuth": {
      "type": "apiKey",
      "name": "Authorization",
      "in": "header"
    }
  },
  "paths": {
    "/scans": {
      "post": {
        "security": [{"ApiKeyAuth": []}],
        "description": "Validates the request, stores a pending task and queues it for the background workers. Poll GET /scans/{id} until the status is completed or failed.",
        "consumes": ["application/json"],
        "produces": ["application/json"],
        "tags": ["Scans"],
        "summary": "Create a new scan task",
        "parameters": [
          {
            "description": "Scan request parameters",
            "name": "scanRequest",
            "in": "body",
            "required": true,
            "schema": {"$ref": "#/definitions/api.CreateScanRequest"}
          }
        ],
        "responses": {
          "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/api.ScanAcceptedResponse"}},
          "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
          "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
          "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
          "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
          "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
        }
      }
    },
    "/scans/{id}": {
      "get": {
        "security": [{"ApiKeyAuth": []}],
        "description": "Returns a snapshot of the task. open_ports is null until the task completes, then lists the open ports (empty when none were found).",
        "produces": ["application/json"],
        "tags": ["Scans"],
        "summary": "Get scan status and results",
        "parameters": [
          {
            "type": "string",
            "description": "Scan Task ID (UUID v4)",
            "name": "id",
            "in": "path",
            "required": true
          }
        ],
        "responses": {
          "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.ScanTask"}},
          "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
          "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
          "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
          "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
          "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
        }
      }
    }
  },
  "definitions": {
    "api.CreateScanRequest": {
      "type": "object",
      "required": ["host", "ports"],
      "properties": {
        "host": {"type": "string", "example": "scanme.nmap.org"},
        "ports": {"type": "string", "example": "22,80,443,8000-8100"},
        "workers": {"type": "integer", "minimum": 1, "example": 256},
        "timeout_ms": {"type": "integer", "minimum": 1, "maximum": 60000, "example": 2000}
      }
    },
    "api.ErrorResponse": {
      "type": "object",
      "properties": {
        "error": {"type": "string", "example": "task not found"}
      }
    },
    "api.ScanAcceptedResponse": {
      "type": "object",
      "properties": {
        "id": {"type": "string", "format": "uuid", "example": "a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"},
        "status": {"type": "string", "enum": ["pending"], "example": "pending"}
      }
    },
    "api.ScanTask": {
      "type": "object",
      "properties": {
        "id": {"type": "string", "format": "uuid", "example": "a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"},
        "status": {"type": "string", "enum": ["pending", "running", "completed", "failed"], "example": "pending"},
        "host": {"type": "string", "example": "scanme.nmap.org"},
        "ip": {"type": "string", "example": "45.33.32.156"},
        "ports": {"type": "string", "example": "22,80,443,1000-1100"},
        "workers": {"type": "integer", "example": 256},
        "timeout_ms": {"type": "integer", "example": 2000},
        "open_ports": {"type": "array", "items": {"type": "integer"}, "example": [22, 80]},
        "created_at": {"type": "string", "format": "date-time", "example": "2024-01-02T15:04:05Z"},
        "completed_at": {"type": "string", "format": "date-time", "example": "2024-01-02T15:06:30Z"},
        "error": {"type": "string"}
      }
    }
  }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "tcpsweep API",
	Description:      "Asynchronous TCP connect port scanning.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
