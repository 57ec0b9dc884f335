package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CourseVault Credential API",
        "description": "Certificate issuance, verification and rendering for CourseVault courses.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Verification", "description": "Public certificate lookup and documents"},
        {"name": "Certificates", "description": "Learner certificates"},
        {"name": "Quiz", "description": "Certification quiz"},
        {"name": "Admin Certificates", "description": "Manual issuance, lifecycle and ledger maintenance"}
    ],
    "paths": {
        "/certificates/verify": {
            "get": {
                "tags": ["Verification"],
                "summary": "Verify a certificate code",
                "parameters": [
                    {"name": "code", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "VALID, REVOKED or NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Missing code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/certificates/{code}/download": {
            "get": {
                "tags": ["Verification"],
                "summary": "Download certificate PDF",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF attachment", "schema": {"type": "file"}},
                    "404": {"description": "Unknown code", "schema": {"$ref": "#/definitions/PlainError"}},
                    "410": {"description": "Revoked", "schema": {"$ref": "#/definitions/PlainError"}},
                    "500": {"description": "Render failed", "schema": {"$ref": "#/definitions/PlainError"}}
                }
            }
        },
        "/certificates/{code}/preview": {
            "get": {
                "tags": ["Verification"],
                "summary": "Certificate HTML preview",
                "produces": ["text/html"],
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Valid or revoked treatment"},
                    "404": {"description": "Not-found treatment"}
                }
            }
        },
        "/me/certificates": {
            "get": {
                "tags": ["Certificates"],
                "summary": "List my certificates",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/me/certificates/{courseId}": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Get my certificate for a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No certificate", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/quiz": {
            "post": {
                "tags": ["Quiz"],
                "summary": "Start a certification quiz",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Questions without answers", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already certified", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Question generator unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Session store unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseId}/quiz/{attemptId}/submit": {
            "post": {
                "tags": ["Quiz"],
                "summary": "Submit quiz answers",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "attemptId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitQuizRequest"}}
                ],
                "responses": {
                    "200": {"description": "Verdict, plus the certificate on a pass", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Attempt unknown or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/certificates": {
            "get": {
                "tags": ["Admin Certificates"],
                "summary": "List certificates",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["valid", "revoked"]},
                    {"name": "creation_method", "in": "query", "type": "string", "enum": ["quiz", "manual"]},
                    {"name": "course_id", "in": "query", "type": "string"},
                    {"name": "user_id", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Admin Certificates"],
                "summary": "Issue a certificate manually",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IssueCertificateRequest"}}
                ],
                "responses": {
                    "200": {"description": "Already issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/certificates/export": {
            "get": {
                "tags": ["Admin Certificates"],
                "summary": "Export the certificate register as CSV",
                "produces": ["text/csv"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["valid", "revoked"]},
                    {"name": "creation_method", "in": "query", "type": "string", "enum": ["quiz", "manual"]},
                    {"name": "course_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV attachment", "schema": {"type": "file"}}
                }
            }
        },
        "/admin/certificates/reconcile": {
            "post": {
                "tags": ["Admin Certificates"],
                "summary": "Repair the certificate ledger",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Repair report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A pass is already running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/certificates/{code}/revoke": {
            "post": {
                "tags": ["Admin Certificates"],
                "summary": "Revoke a certificate",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ChangeCertificateStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/certificates/{code}/restore": {
            "post": {
                "tags": ["Admin Certificates"],
                "summary": "Restore a revoked certificate",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ChangeCertificateStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/certificates/{code}/audit": {
            "get": {
                "tags": ["Admin Certificates"],
                "summary": "Certificate audit trail",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Current account",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "IssueCertificateRequest": {
            "type": "object",
            "required": ["user_id", "course_id"],
            "properties": {
                "user_id": {"type": "string"},
                "course_id": {"type": "string"},
                "student_name": {"type": "string"},
                "course_name": {"type": "string"},
                "course_level": {"type": "string"}
            }
        },
        "ChangeCertificateStatusRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "SubmitQuizRequest": {
            "type": "object",
            "properties": {
                "answers": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "index": {"type": "integer"},
                            "answer": {"type": "string"}
                        }
                    }
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "PlainError": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
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
