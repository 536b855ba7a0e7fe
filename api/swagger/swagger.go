package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Dorm API",
        "description": "Dormitory registration and room allocation engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Semesters", "description": "Active semester and registration windows"},
        {"name": "Rooms", "description": "Room availability"},
        {"name": "Registrations", "description": "Housing registrations and batch assignment"},
        {"name": "Payments", "description": "Payment references and confirmation"},
        {"name": "Invoices", "description": "Invoice listing and statements"},
        {"name": "Utilities", "description": "Monthly utility cycles"},
        {"name": "Notifications", "description": "Student notification feed"},
        {"name": "Admin", "description": "Background job management"}
    ],
    "paths": {
        "/semesters/active": {
            "get": {
                "tags": ["Semesters"],
                "summary": "Get the active semester",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/semesters/active/windows": {
            "get": {
                "tags": ["Semesters"],
                "summary": "Get registration window states",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rooms/availability": {
            "get": {
                "tags": ["Rooms"],
                "summary": "List rooms with remaining capacity",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/rooms/{id}/occupants": {
            "get": {
                "tags": ["Rooms"],
                "summary": "List active stays in a room",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List the caller's notifications",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrations": {
            "get": {
                "tags": ["Registrations"],
                "summary": "List registrations",
                "parameters": [
                    {"name": "semesterId", "in": "query", "type": "string"},
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Registrations"],
                "summary": "Submit a housing registration",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Window closed or constraint violated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrations/auto-assign": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Run batch room assignment",
                "responses": {
                    "200": {"description": "Assignment report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Run already in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/registrations/{id}/status": {
            "put": {
                "tags": ["Registrations"],
                "summary": "Decide a registration",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Registration already terminal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/qrcode/{invoiceId}": {
            "post": {
                "tags": ["Payments"],
                "summary": "Issue a payment reference",
                "parameters": [
                    {"name": "invoiceId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Invoice not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/confirm": {
            "post": {
                "tags": ["Payments"],
                "summary": "Confirm a payment",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid or expired reference", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payments/verify/{paymentRef}": {
            "get": {
                "tags": ["Payments"],
                "summary": "Verify a payment reference",
                "parameters": [
                    {"name": "paymentRef", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown reference", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/invoices": {
            "get": {
                "tags": ["Invoices"],
                "summary": "List invoices",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/invoices/{id}": {
            "get": {
                "tags": ["Invoices"],
                "summary": "Get an invoice",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/invoices/{id}/statement": {
            "get": {
                "tags": ["Invoices"],
                "summary": "Download an invoice statement",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["pdf", "csv"]}
                ],
                "responses": {
                    "200": {"description": "Statement file"}
                }
            }
        },
        "/utility/cycles/{id}/details/{detailId}/readings": {
            "put": {
                "tags": ["Utilities"],
                "summary": "Record meter readings for a cycle detail",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "detailId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Recorded"},
                    "409": {"description": "Cycle already published", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/utility/cycles/{id}/publish": {
            "post": {
                "tags": ["Utilities"],
                "summary": "Publish a utility cycle",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/jobs": {
            "get": {
                "tags": ["Admin"],
                "summary": "List scheduled jobs",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/jobs/{name}/run": {
            "post": {
                "tags": ["Admin"],
                "summary": "Trigger a job outside its schedule",
                "parameters": [
                    {"name": "name", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "202": {"description": "Triggered"},
                    "404": {"description": "Unknown job"},
                    "409": {"description": "Job already running"}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
